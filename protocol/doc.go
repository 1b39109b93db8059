package protocol

// This package implements parsing and serialising the messages that an
// Elpida solver and an Elpida problem server exchange.
//
// The protocol aims to be
//
// - easy to implement from any language that can open a file
// - human readable
// - free of any framing, the end of a message is the end of the stream
//
// - `Query` - A solver instruction to the problem server.
// - `Reply` - The problem server's answer to exactly one query.
//
// Both are single JSON objects, written without newlines. The variant of a
// message is carried by its discriminant field: `query_type` for queries and
// `reply_type` for replies. Field names are always carried in the payload,
// never implied by position.
//
// === Queries
//
//  ```
//    {"query_type":"call","solution":[0,1,1]}
//    {"query_type":"new_run"}
//    {"query_type":"stop"}
//  ```
//
// Query types are an open set. Unknown ones are decoded as RawQuery and it is
// up to the server to decide whether it supports them.
//
// === Replies
//
//  ```
//    {"reply_type":"value","value":[2]}
//    {"reply_type":"ack"}
//    {"reply_type":"error","code":134,"message":"Unsupported message type"}
//  ```
//
// === Exchange
//
// The solver writes one query then reads one reply. The server never reads a
// second query before it has written the reply to the first, so there is no
// need for request IDs.
//
// === Errors
//
// Every failure is classified by a Kind which has a numeric code, see
// errors.go. The codes double as process exit statuses for the command line
// tools and as the `code` of error replies.
