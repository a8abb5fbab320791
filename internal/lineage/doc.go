// Package lineage resolves column-level lineage across the models of a
// project.
//
// The SQL of every model is parsed with pkg/lineage and each declared column
// is traced back to the physical tables it reads from. Tables that name a
// project model become edges on the columns of both models.
//
// # Basic Usage
//
//	project := core.NewProject("shop", models)
//	summary := lineage.New(lineage.Options{Dialect: sqllineage.BigQuery}).Analyze(project)
//
//	for _, ref := range project.Models["model.shop.orders"].Columns["id"].Upstream {
//	    fmt.Println(ref)
//	}
//
// Resolution is best effort: SQL that cannot be parsed, columns that cannot
// be found and tables outside the project produce no edges and no error.
package lineage
