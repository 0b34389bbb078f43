// Command reelvault is the CLI for the reelvault conversion daemon. It talks
// to reelvaultd over the HTTP API configured by paths.api_bind.
package main
