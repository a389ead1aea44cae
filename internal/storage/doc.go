// Package storage persists what the storefront proxy serves: per-shop
// settings (with the demo pricing knobs and a display counter) and the real
// orders received through the order webhook.
package storage
