// Package analyzer decides which commands of a round must run again.
//
// A command B forward-depends on an earlier command A (in program order)
// when write_set(A) and read_set(B) intersect. After a round, every B with
// such a dependency on any preceding workset command stays in the workset;
// every other command is dropped. The first command of a workset has no
// predecessor and is always dropped, so the workset shrinks every round.
//
// Only forward dependencies are detected. A later command writing a file an
// earlier command reads (a backward dependency) is not observed and can
// leave the earlier command's outputs stale.
//
// The analyzer is pure: it reads committed sets from the command model and
// never mutates it.
package analyzer
