package backend

import "time"

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Product struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	WeightGrams int    `json:"weight_grams"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

type ProductList struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}

type CartItem struct {
	ID          string `json:"id"`
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	WeightGrams int    `json:"weight_grams"`
	Stock       int    `json:"stock"`
}

type Address struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Recipient     string `json:"recipient"`
	Phone         string `json:"phone"`
	Street        string `json:"street"`
	City          string `json:"city"`
	Province      string `json:"province"`
	PostalCode    string `json:"postal_code"`
	DestinationID string `json:"destination_id"`
	IsDefault     bool   `json:"is_default"`
}

type OrderRequest struct {
	ItemIDs      []string `json:"item_ids"`
	AddressID    string   `json:"address_id"`
	CourierCode  string   `json:"courier_code"`
	ServiceCode  string   `json:"service_code"`
	ShippingCost int64    `json:"shipping_cost"`
	MethodCode   string   `json:"payment_method"`
	PaymentFee   int64    `json:"payment_fee"`
	Notes        string   `json:"notes"`
}

type OrderResult struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url,omitempty"`
}

type OrderItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type Order struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Total       int64       `json:"total"`
	CourierCode string      `json:"courier_code"`
	ServiceCode string      `json:"service_code"`
	MethodCode  string      `json:"payment_method"`
	PaymentURL  string      `json:"payment_url,omitempty"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
}
