// Package module reads and writes .risum module containers.
//
// A module container is a small binary stream:
//
//	byte    magic       0x6F
//	byte    version     0x00
//	uint32  manifestLen (little-endian)
//	[]byte  manifest    (packed JSON)
//	repeat:
//	  byte    marker    0x00 end, 0x01 asset record, anything else skipped
//	  uint32  assetLen  (only after 0x01)
//	  []byte  asset     (packed bytes)
//
// The manifest's module.assets list and the asset records are parallel
// arrays: the Nth record belongs to the Nth manifest entry. The record
// scan is strictly sequential because every record's offset depends on
// the length of the one before it.
package module
