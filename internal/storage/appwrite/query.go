package appwrite

import (
	"github.com/appwrite/sdk-for-go/query"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
)

// EncodeQueries переводит docstore.Query в строки queries[] Appwrite.
// limit отправляется всегда: без него Appwrite отдаёт 25 документов.
func EncodeQueries(q docstore.Query) []string {
	out := make([]string, 0, len(q.Filters)+len(q.Sorts)+2)
	for _, f := range q.Filters {
		out = append(out, query.Equal(f.Field, f.Value))
	}
	for _, s := range q.Sorts {
		if s.Desc {
			out = append(out, query.OrderDesc(s.Field))
		} else {
			out = append(out, query.OrderAsc(s.Field))
		}
	}
	out = append(out, query.Limit(q.Limit))
	if q.Offset > 0 {
		out = append(out, query.Offset(q.Offset))
	}
	return out
}
