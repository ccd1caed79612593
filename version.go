package taxgraph

// Version is the library version. Release builds override it with
// -ldflags "-X github.com/paisatax/taxgraph.Version=...".
var Version = "0.1.0-dev"
