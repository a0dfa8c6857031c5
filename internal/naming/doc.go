// Package naming correlates asset descriptors with payloads and assigns
// run-unique output filenames.
//
// The collision-avoidance strategy mirrors a deterministic allocator: names
// are handed out in descriptor order, the first descriptor wins the bare
// name, and later colliders receive a predictable suffix derived from
// their asset index ("icon_7.png"). Uniqueness is case-insensitive so
// the output also survives extraction onto case-insensitive filesystems.
package naming
