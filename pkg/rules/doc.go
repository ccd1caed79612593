// Package rules loads tax rule catalogs from YAML (or JSON) files.
//
// A rule file lists node specs. Computed nodes name a built-in op (sum,
// difference, product, min, max, copy, scale, brackets, phase_out,
// filing_status) whose parameters are decoded with mapstructure, and may
// carry applicability conditions, a floor and a cap. Nodes that belong to a
// repeatable family, such as one W-2 per employer, are written once as a
// template and expanded per instance.
package rules
