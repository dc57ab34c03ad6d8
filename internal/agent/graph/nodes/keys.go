package nodes

// Graph node keys. They also appear in the per-turn step trace.
const (
	NodeDispatch      = "Dispatch"
	NodeLoadIdentity  = "LoadIdentity"
	NodeCapability    = "CapabilityCheck"
	NodeExtractor     = "Extractor"
	NodeDecision      = "Decision"
	NodeGenerator     = "Generator"
	NodeSearch        = "Search"
	NodeDisplay       = "Display"
	NodeClearMemory   = "ClearMemory"
	NodeLeadCollector = "LeadCollector"
	NodeClarify       = "Clarify"
	NodeChat          = "IntelligentChat"
	NodeFinalize      = "Finalize"
)

// Successors reachable through each branching node.
var (
	DispatchRoutes     = []string{NodeLoadIdentity, NodeCapability, NodeExtractor, NodeClearMemory, NodeLeadCollector, NodeClarify, NodeChat}
	LoadIdentityRoutes = []string{NodeFinalize, NodeCapability, NodeClearMemory, NodeLeadCollector}
	CapabilityRoutes   = []string{NodeFinalize, NodeExtractor}
	ClearMemoryRoutes  = []string{NodeFinalize, NodeCapability}
	DecisionRoutes     = []string{NodeGenerator, NodeSearch, NodeDisplay}
	SearchRoutes       = []string{NodeDisplay, NodeFinalize}
)
