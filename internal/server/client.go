package server

// WebSocketPath is where the reload client connects.
const WebSocketPath = "/__weft/ws"

// reloadScript is injected into every served HTML page while hot reload is on.
const reloadScript = `<script data-weft-reload>
(function () {
  var overlayId = "__weft_error";
  function overlay(msg) {
    var el = document.getElementById(overlayId);
    if (!msg) { if (el) el.remove(); return; }
    if (!el) {
      el = document.createElement("pre");
      el.id = overlayId;
      el.style.cssText = "position:fixed;inset:0;margin:0;padding:2em;z-index:2147483647;" +
        "background:rgba(20,0,0,.92);color:#ffb4b4;font:14px/1.5 monospace;white-space:pre-wrap;overflow:auto";
      document.body.appendChild(el);
    }
    el.textContent = msg;
  }
  function refreshStyles(prefix) {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var url = new URL(links[i].href);
      if (prefix && url.pathname.indexOf(prefix) !== 0) continue;
      url.searchParams.set("weft", Date.now());
      links[i].href = url.toString();
    }
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "` + WebSocketPath + `");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "build_error") { overlay("weft: " + msg.target + " failed\n\n" + msg.content); return; }
      overlay(null);
      if (msg.type === "css_update") { refreshStyles(msg.target); return; }
      if (msg.type === "full_reload") { location.reload(); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>
`
