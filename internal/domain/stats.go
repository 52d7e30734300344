package domain

// OrderStats — агрегаты по заказам магазина для дашборда.
type OrderStats struct {
	TotalOrders  int          `json:"totalOrders"`
	TotalRevenue int64        `json:"totalRevenue"`
	TodayOrders  int          `json:"todayOrders"`
	TodayRevenue int64        `json:"todayRevenue"`
	TopProducts  []TopProduct `json:"topProducts"`
}

// TopProduct — товар в рейтинге продаж.
type TopProduct struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	TotalQuantity int    `json:"totalQuantity"`
	TotalRevenue  int64  `json:"totalRevenue"`
}
