// Package rowshape maps nested, potentially cyclic object data onto flat
// typed arrays and back.
//
// A schema tree (pkg/schema) declares how objects span columns: primitives
// bind scalar arrays, lists bind boundary arrays over a content node, records
// and tuples group children, unions select a possibility per row through a
// tag array, and pointers indirect through an index array, the only legal way
// to form a cycle.
//
// Resolution binds a schema's symbolic array references against a column
// source (pkg/column) and canonicalizes list boundaries to a (start, end)
// pair. Views (pkg/view) read single rows back as ephemeral values without
// copying storage. The flattener (pkg/flatten) goes the other way, appending
// plain nested values into struct-of-arrays columns named by schema path.
// Columns bridge to Apache Arrow record batches through pkg/arrowcol.
package rowshape
