// Package tools opens saved images in the platform's default viewer.
package tools
