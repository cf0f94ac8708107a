/*

Process of compilation

Program Text ->
	lower ->
Tagged-Variant IR (ir) ->
	simplify, combine, partial-eval ->
Optimized IR (ir) ->
	asmtext / jit / ssaout ->
Assembly Text, Running Process, or Structured-IR Text

*/
package compiler
