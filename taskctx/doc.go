// Package taskctx provides an immutable, ambient key/value carrier that
// is bound to a task at admission and restored across every suspension
// point of its execution.
//
// # Ecosystem Position
//
// taskctx sits underneath taskmanager: every managed operation observes
// exactly the values bound at admission, plus whatever it layers on top
// via With. Nested calls extend the carrier; they never mutate it.
//
//	tc := taskctx.New().With("request_id", "req-1")
//	ctx = taskctx.WithContext(ctx, tc)
//	...
//	tc2, _ := taskctx.FromContext(ctx)
//	tc2.Value("request_id") // "req-1"
package taskctx
