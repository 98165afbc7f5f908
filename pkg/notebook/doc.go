// Package notebook drives document-grounded Q&A sessions against a streaming,
// login-gated web UI.
//
// # Components
//
//  1. PageSignalAdapter: the boundary to one browser tab (busy indicator,
//     visible answers, question submission, liveness, error banners)
//  2. Registry: owns sessions, enforces capacity and idle eviction, and
//     serializes creation per id against the shared browser identity
//  3. ReadinessGate: decides whether work may proceed unattended, must wait
//     for the user, or may remediate credentials automatically
//  4. Acquirer: polls a tab until a new answer appears and stops changing
//  5. Dispatcher: glue running one question through all of the above
//
// # Question lifecycle
//
//	Idle -> Dispatching -> (Awaiting | Blocked) -> Idle | Failed
//
// A session holds at most one question in flight. A second question for the
// same id waits for the first to finish. Sessions with different ids run
// independently up to the registry capacity.
//
// # Example
//
//	registry := notebook.NewRegistry(factory, notebook.RegistryOptions{Capacity: 5})
//	gate := notebook.NewReadinessGate(credentials, logger)
//	dispatcher := notebook.NewDispatcher(registry, gate, credentials, notebook.DispatcherOptions{})
//	result, err := dispatcher.Ask(ctx, notebook.AskRequest{
//	    Question:         "What does chapter 2 conclude?",
//	    TargetResourceID: "https://notebooklm.google.com/notebook/abc",
//	})
package notebook
