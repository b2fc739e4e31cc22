// Package trace turns an Execution Tracer's per-round log into structured
// events and attributes every event to the command that owns it.
//
// # Line shapes
//
// The parser depends on four shapes only; their concrete syntax belongs to
// a Format adapter:
//
//   - scoped line: an owning-command tag (or the "no command" sentinel)
//     followed by a free-form body
//   - resource-open event: a local reference id bound to a path and a
//     two-flag read/write mode
//   - launch event: a child command plus local-name=local-id bindings
//     resolved in the launching command's scope
//   - exit event: the exit status of the owning command
//
// The Riker adapter reads lines such as
//
//	[Command grep foo in1]: r5 = PathRef(r3, "in1", r--)
//	[Command sh Rikerfile]: r9 = PathRef(r3, "out1", -w-)
//	[Command sh Rikerfile]: Launch([Command grep foo in1], {0=r0, 1=r9, 2=r2})
//	[Command grep foo in1]: Exit(1)
//	[No Command]: r0 = SpecialRef(stdin)
//
// # Scoping
//
// Reference ids repeat across commands, so the reference table is keyed by
// (owning command, local id). Launch bindings are resolved only against the
// launching command's own scope. A binding that does not resolve is
// skipped and reported in Result.Unresolved, since the child's sets may
// then be missing a name.
//
// Formats are versioned. Registry.Lookup resolves "name" or
// "name@constraint" to the highest registered version that satisfies the
// constraint, so a new tracer syntax needs a new adapter, not a new parser.
package trace
