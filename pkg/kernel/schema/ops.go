package schema

// Arity bounds the declared `args` length an operator accepts. Max of -1
// means unbounded. These counts are over whatever args are explicitly
// declared in the rule file; a chain step's implicit first argument (the
// previous value in the chain) is not counted here.
type Arity struct {
	Min int
	Max int
}

// ScopeRequirement names the iteration scope an operator's element-wise
// argument is evaluated under, for the validator's scoping checks.
type ScopeRequirement int

const (
	ScopeNone ScopeRequirement = iota
	ScopeItem
	ScopeItemAcc
)

// OpInfo is everything the loader, validator, and evaluator need to know
// about an operator short of its actual implementation.
type OpInfo struct {
	Arity Arity
	Scope ScopeRequirement
}

// Ops is the closed operator set. UnknownOp is raised for anything not in
// this table.
var Ops = map[string]OpInfo{
	// strings
	"concat":     {Arity{0, -1}, ScopeNone},
	"to_string":  {Arity{0, 1}, ScopeNone},
	"trim":       {Arity{0, 1}, ScopeNone},
	"lowercase":  {Arity{0, 1}, ScopeNone},
	"uppercase":  {Arity{0, 1}, ScopeNone},
	"replace":    {Arity{2, 3}, ScopeNone},
	"split":      {Arity{1, 2}, ScopeNone},
	"pad_start":  {Arity{1, 3}, ScopeNone},
	"pad_end":    {Arity{1, 3}, ScopeNone},

	// objects
	"merge":             {Arity{0, -1}, ScopeNone},
	"deep_merge":        {Arity{0, -1}, ScopeNone},
	"get":               {Arity{1, 2}, ScopeNone},
	"pick":              {Arity{1, 2}, ScopeNone},
	"omit":              {Arity{1, 2}, ScopeNone},
	"keys":              {Arity{0, 1}, ScopeNone},
	"values":            {Arity{0, 1}, ScopeNone},
	"entries":           {Arity{0, 1}, ScopeNone},
	"from_entries":      {Arity{0, 1}, ScopeNone},
	"object_flatten":    {Arity{0, 1}, ScopeNone},
	"object_unflatten":  {Arity{0, 1}, ScopeNone},

	// arrays
	"map":          {Arity{1, 2}, ScopeItem},
	"filter":       {Arity{1, 2}, ScopeItem},
	"flat_map":     {Arity{1, 2}, ScopeItem},
	"flatten":      {Arity{0, 2}, ScopeNone},
	"take":         {Arity{1, 2}, ScopeNone},
	"drop":         {Arity{1, 2}, ScopeNone},
	"slice":        {Arity{1, 3}, ScopeNone},
	"chunk":        {Arity{1, 2}, ScopeNone},
	"zip":          {Arity{1, -1}, ScopeNone},
	"zip_with":     {Arity{2, -1}, ScopeItem},
	"unzip":        {Arity{0, 1}, ScopeNone},
	"group_by":     {Arity{1, 2}, ScopeItem},
	"key_by":       {Arity{1, 2}, ScopeItem},
	"partition":    {Arity{1, 2}, ScopeItem},
	"unique":       {Arity{0, 1}, ScopeNone},
	"distinct_by":  {Arity{1, 2}, ScopeItem},
	"sort_by":      {Arity{1, 3}, ScopeItem},
	"find":         {Arity{1, 2}, ScopeItem},
	"find_index":   {Arity{1, 2}, ScopeItem},
	"index_of":     {Arity{1, 2}, ScopeNone},
	"contains":     {Arity{1, 2}, ScopeNone},
	"len":          {Arity{0, 1}, ScopeNone},
	"sum":          {Arity{0, 1}, ScopeNone},
	"avg":          {Arity{0, 1}, ScopeNone},
	"min":          {Arity{0, -1}, ScopeNone},
	"max":          {Arity{0, -1}, ScopeNone},
	"reduce":       {Arity{2, 3}, ScopeItemAcc},
	"fold":         {Arity{2, 3}, ScopeItemAcc},

	// lookup
	"lookup":       {Arity{2, 4}, ScopeNone},
	"lookup_first": {Arity{1, 3}, ScopeNone},

	// numbers
	"+":        {Arity{2, -1}, ScopeNone},
	"-":        {Arity{1, -1}, ScopeNone},
	"*":        {Arity{2, -1}, ScopeNone},
	"/":        {Arity{2, 2}, ScopeNone},
	"round":    {Arity{0, 2}, ScopeNone},
	"to_base":  {Arity{1, 2}, ScopeNone},

	// dates
	"date_format": {Arity{1, 4}, ScopeNone},
	"to_unixtime": {Arity{0, 3}, ScopeNone},

	// logic
	"and":      {Arity{0, -1}, ScopeNone},
	"or":       {Arity{0, -1}, ScopeNone},
	"not":      {Arity{0, 1}, ScopeNone},
	"coalesce": {Arity{0, -1}, ScopeNone},
	"==":       {Arity{1, 2}, ScopeNone},
	"!=":       {Arity{1, 2}, ScopeNone},
	"<":        {Arity{1, 2}, ScopeNone},
	"<=":       {Arity{1, 2}, ScopeNone},
	">":        {Arity{1, 2}, ScopeNone},
	">=":       {Arity{1, 2}, ScopeNone},
	"~=":       {Arity{1, 2}, ScopeNone},
}

// ElementScopedOps returns true for operators whose first argument is an
// expression evaluated with @item bound to each collection element.
func ElementScopedOps() map[string]bool {
	out := map[string]bool{}
	for name, info := range Ops {
		if info.Scope != ScopeNone {
			out[name] = true
		}
	}
	return out
}

// AccScopedOps returns true for operators that additionally bind @acc.
func AccScopedOps() map[string]bool {
	out := map[string]bool{}
	for name, info := range Ops {
		if info.Scope == ScopeItemAcc {
			out[name] = true
		}
	}
	return out
}
