package ports

// Renderer is the output sink for record sequences. Column order is
// preserved as given. A non-empty sumColumn requests a trailing aggregate row
// totalling that column. Implementations differ only in presentation.
type Renderer interface {
	Render(columns []string, rows [][]interface{}, sumColumn string) error
}
