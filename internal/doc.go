// Package internal holds the packages behind the weft command: everything
// the CLI and preview server need that is not part of the public template
// API under pkg/.
//
// # Package Organization
//
//   - cache: LRU cache of compiled templates keyed by content hash
//   - config: Viper-backed configuration (.weft.yml, WEFT_* variables)
//   - data: YAML and JSON data files for rendering
//   - middleware: HTTP middleware for the preview server
//   - mockdata: generated values for templates without data files
//   - registry: compiled templates by name, with change events
//   - scanner: finds and compiles templates on disk
//   - server: live-reload preview server
//   - version: build information
//   - watcher: debounced fsnotify file watching
//   - websocket: browser connection hub for reload messages
package internal
