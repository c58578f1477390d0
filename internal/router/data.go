package router

// Kind is the routed content category (spec §4.7).
type Kind string

const (
	KindHTML   Kind = "html"
	KindJS     Kind = "js"
	KindAPI    Kind = "api"
	KindBinary Kind = "binary"
)
