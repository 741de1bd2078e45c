// Package internal contains the implementation packages for weft.
//
// The packages are organized by stage of a build:
//
//   - config: the path table and options, loaded through Viper
//   - graph: series/parallel composition of named tasks with run hooks
//   - pipeline: the source -> transform -> destination file stream over afero
//   - transform: markup, script, stylesheet, image and sprite transforms
//   - build: the task table, runner, conflict check and run metrics
//   - watcher: fsnotify-based change detection with debounced batches
//   - websocket: the live-reload hub for connected browsers
//   - server: static file serving with reload script injection
//   - services: build and watch orchestration used by the CLI
//
// Errors are classified in errors and logged through logging; neither
// package depends on any other internal package.
package internal
