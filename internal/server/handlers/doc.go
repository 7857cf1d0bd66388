// Package handlers contains HTTP handlers for the careradius admin API.
//
// This package provides handlers for:
//   - Health and recovery endpoints (monitoring)
//   - Zone and visit history management
//   - The webhook transition source and the device position feed
//   - Shared response helper functions
//
// Every handler reports failures through the foundation/errors HTTP adapter so
// classified errors map to consistent status codes, and writes bodies declared
// in the server/responses package.
package handlers
