// Package card parses character-card containers: PNG images carrying
// tEXt metadata and asset chunks, and .charx ZIP archives carrying a
// card.json manifest next to their asset files.
//
// Both parsers return the decoded metadata document and the normalized
// descriptor list. Image payloads are keyed by asset index; archive
// payloads stay bound to the descriptor they were read for. Naming and
// packaging happen later, in the naming and output packages.
package card
