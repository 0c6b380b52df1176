// Package zephyrproof proves and verifies EVM execution traces.
//
// A trace is an ordered list of executed opcodes with the pre-step stack
// snapshot, gas and program counter of every step. The prover checks the
// trace, flattens it into a witness, cuts it into chunks of 2^k steps and
// proves every chunk against the opcode constraint system on a bounded
// worker pool. The verifier needs only the resulting ProofArtifact: the
// circuit shape and verifying key are rebuilt from its num_steps and k.
//
// # Quick Start
//
// Proving a trace file:
//
//	tr, err := zephyrproof.ReadTraceFile("trace.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	prover, err := zephyrproof.NewProver(zephyrproof.DefaultConfig().WithK(12))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	artifact, err := prover.Prove(ctx, tr)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Verifying an artifact:
//
//	verifier, err := zephyrproof.NewVerifier(zephyrproof.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ok, err := verifier.Verify(ctx, artifact)
//	if !ok {
//		log.Fatalf("proof rejected: %v", err)
//	}
//
// # Traces
//
// Traces are read from JSON:
//
//	{
//	  "opcodes": ["PUSH1", "PUSH1", "ADD"],
//	  "stack_states": [[], [1], [2, 1]],
//	  "gas_values": [1000, 997, 994]
//	}
//
// Stacks are listed top first and may be truncated. Words are 64 bits wide
// and arithmetic wraps modulo 2^64. Pcs are derived from the opcode stream
// when omitted. Execute records a trace by running a program, and Fetch
// pulls one from a node with debug_traceTransaction.
//
// # Proofs
//
// The bundled backend commits to every row of a chunk circuit with a Tip5
// Merkle tree and opens rows chosen by a Fiat-Shamir transcript, checking
// them against every constraint. It is transparent, not zero-knowledge.
//
// # Architecture
//
// - pkg/zephyr-proof/: Public API (this package)
// - internal/zephyr-proof/: Private implementation (not importable)
package zephyrproof
