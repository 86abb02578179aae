package shared

const (
	DefaultPage  = 1
	DefaultLimit = 20

	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool

	// Entity specific filters
	CategoryID   *int64
	IsIngredient *bool
	IsSaleItem   *bool
}
