// Package banners selects the home page banners to render.
//
// Banners are declared in ordered groups. Each group is either fixed
// (declaration order) or shuffled (a fresh uniform permutation of its
// visible banners on every selection). The output concatenates the
// visible banners of every group in group order, so fixed groups
// declared first always precede shuffled ones.
//
// Visibility is a CEL expression over the request signals:
//
//	chain_id  int                 selected chain, 0 when unknown
//	locale    string              UI locale
//	path      string              current page path
//	flags     map(string, bool)   feature flags
//	now       timestamp           evaluation time
//
// For example:
//
//	visible: 'chain_id in [1, 56] && now < timestamp("2024-01-01T00:00:00Z")'
package banners
