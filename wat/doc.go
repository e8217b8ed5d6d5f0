// Package wat converts modules between the in-memory form and the folded
// s-expression text format. Print renders deterministically; Parse reads
// everything Print emits plus the usual hand-written liberties (named
// locals and labels, inline shapes, comments). PrintAsmjs produces a
// JavaScript-flavored view of function bodies for debugging.
package wat
