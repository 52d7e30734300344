package docstore

// Filter — условие равенства поля значению.
type Filter struct {
	Field string
	Value any
}

// Sort — сортировка по полю.
type Sort struct {
	Field string
	Desc  bool
}

// Query — разобранный набор опций List.
type Query struct {
	Filters []Filter
	Sorts   []Sort
	Limit   int
	Offset  int
}

// QueryOption настраивает выборку List.
type QueryOption func(*Query)

// Equal оставляет документы, у которых field равно value.
func Equal(field string, value any) QueryOption {
	return func(q *Query) {
		q.Filters = append(q.Filters, Filter{Field: field, Value: value})
	}
}

// OrderAsc сортирует по возрастанию field.
func OrderAsc(field string) QueryOption {
	return func(q *Query) {
		q.Sorts = append(q.Sorts, Sort{Field: field})
	}
}

// OrderDesc сортирует по убыванию field.
func OrderDesc(field string) QueryOption {
	return func(q *Query) {
		q.Sorts = append(q.Sorts, Sort{Field: field, Desc: true})
	}
}

// Limit ограничивает количество документов в ответе.
func Limit(n int) QueryOption {
	return func(q *Query) {
		q.Limit = n
	}
}

// Offset пропускает первые n документов.
func Offset(n int) QueryOption {
	return func(q *Query) {
		q.Offset = n
	}
}

// BuildQuery применяет опции и подставляет DefaultLimit.
func BuildQuery(opts ...QueryOption) Query {
	var q Query
	for _, opt := range opts {
		if opt != nil {
			opt(&q)
		}
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
