// Package titlenorm normalizes game titles for correlation: diacritic
// folding, subtitle and edition stripping, Roman numeral conversion, and a
// token-vector similarity measure. It also parses release metadata (region,
// languages, version, dump status) out of No-Intro, TOSEC, and GoodTools
// style file names.
package titlenorm
