// Package utils validates request input before it reaches a terminal.
package utils
