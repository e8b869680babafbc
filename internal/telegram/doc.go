// Package telegram maps Telegram updates onto the identity store.
//
// Users and chats are identified by their numeric Telegram ids rendered in
// base 10. Polling, webhooks and sending replies live elsewhere; this package
// only consumes updates that have already been decoded into telego types.
package telegram
