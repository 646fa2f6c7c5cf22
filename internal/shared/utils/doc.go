// Package utils holds input validation shared by the HTTP and websocket
// handlers: identifiers, tool IDs, command lines, terminal sizes and
// payload limits.
package utils
