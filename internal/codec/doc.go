// Package codec reads and writes item collections as newline-delimited JSON,
// optionally zstd-compressed.
//
// Numbers are decoded as json.Number so large numeric item ids survive a
// round trip without float rounding.
package codec
