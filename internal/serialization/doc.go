// Package serialization provides the curvnet weight format used to save and
// load parameter buffers, module weights and connection tables.
//
//	Format Structure:
//	  [0x00-0x03: Magic "CVNW"]
//	  [0x04-0x07: Version (uint32 LE)]
//	  [0x08-0x0B: Flags (uint32 LE)]
//	  [0x0C-0x0F: Reserved]
//	  [0x10-0x17: Header size (uint64 LE)]
//	  [0x18-0x1F: Data size (uint64 LE)]
//	  [0x20-0x3F: SHA-256 checksum of the data section]
//	  [Header: JSON metadata]
//	  [Record data: little-endian float64 / int64, 64-byte aligned]
//
// A file holds an ordered list of named records. Float records carry
// weights, int records carry connection tables.
//
// Example usage:
//
//	// Save a parameter buffer
//	rec := serialization.FloatRecord("x", p.X())
//	if err := serialization.WriteFile("net.cvnw", serialization.KindParameter, nil, rec); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load weights split across several files, concatenated in order
//	x, err := serialization.ReadConcat(ctx, []string{"part0.cvnw", "part1.cvnw"})
package serialization
