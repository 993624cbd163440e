// Package confloader fills configuration structs from layered sources and
// watches the config file for edits.
//
// Sources, from lowest to highest priority:
//
//  1. values already in the target struct (defaults)
//  2. the YAML file
//  3. environment variables: prefix, then sections joined by "__"
//     (WAYPOINT_STORAGE__DATA_DIR sets storage.data_dir)
//  4. explicit overrides, typically command-line flags
package confloader
