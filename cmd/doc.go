// Package cmd provides the command-line interface for sfcpreview.
//
// This package implements the CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - init: Write a default .sfcpreview.yml and preview.js setup module
//   - serve: Start the preview server with hot updates
//   - list: List discovered components, their previews and props
//   - module: Print the text a virtual module address resolves to
//   - watch: Print the reconciliation of every file change
//   - config: Show or validate the resolved configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Start the preview server on another port
//	sfcpreview serve ./src --port 4000
//
//	// List components as JSON
//	sfcpreview list --format json
//
//	// Print the compiled module of the second preview of a file
//	sfcpreview module --file src/Button.vue --index 1
//
//	// Watch and print the component index diff of every edit
//	sfcpreview watch --diff
//
// # Configuration Integration
//
// Configuration is read from these sources, highest priority first:
//
//  1. Command-line flags (--port, --log-level, ...)
//  2. Environment variables (SFCPREVIEW_SERVER_PORT, ...), including those
//     loaded from a .env file in the working directory
//  3. The configuration file: --config, SFCPREVIEW_CONFIG_FILE, or
//     .sfcpreview.yml in the working directory
//  4. Defaults
//
// # Error Handling
//
// Commands return errors to Cobra, which prints them and exits non-zero.
// Parse failures of single components never abort serve, list or watch;
// they are reported and the remaining components stay available.
package cmd
