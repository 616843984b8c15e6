// Package shaders embeds the WGSL compute kernels K1-K7 (spec.md §4.5).
// Each file mirrors the arithmetic of its sim/kernels Go counterpart for
// the cases it implements; the headers of grid_update.wgsl, g2p.wgsl and
// p2g2.wgsl name the force-field kinds, boundary kinds and materials that
// only the CPU reference path handles.
package shaders

import _ "embed"

//go:embed clear_grid.wgsl
var ClearGridWGSL string

//go:embed p2g1.wgsl
var P2G1WGSL string

//go:embed p2g2.wgsl
var P2G2WGSL string

//go:embed grid_update.wgsl
var GridUpdateWGSL string

//go:embed neighbor_density.wgsl
var NeighborDensityWGSL string

//go:embed vorticity.wgsl
var VorticityWGSL string

//go:embed g2p.wgsl
var G2PWGSL string
