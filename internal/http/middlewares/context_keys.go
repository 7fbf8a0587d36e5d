package middlewares

// CtxRequestID is the gin context key holding the request id, read by the
// error envelope writers in this package and in handlers.
const CtxRequestID = "request_id"
