// internal/service/checkout/domain/pricing.go
package domain

import "github.com/shopspring/decimal"

// PricingConfig 是计价参数，启动时从配置注入，之后不变。
type PricingConfig struct {
	TaxRate               decimal.Decimal // 默认 0.10
	FreeShippingThreshold decimal.Decimal // 默认 50
	FlatShippingFee       decimal.Decimal // 默认 10
}

// PricedLine 是一条已计价的订单行，单价取商品当时的有效价。
type PricedLine struct {
	ProductID   uint64
	VendorID    uint64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
}

// Quote 是一次完整计价的结果。
type Quote struct {
	Lines       []PricedLine
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	ShippingFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// Subtotal 汇总各行小计。
func Subtotal(lines []PricedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal)
	}
	return sum
}

// CalculateQuote 是纯计价函数：同样的输入永远给出同样的结果，
// 结账和展示共用。折扣封顶后总额不会为负。
func CalculateQuote(lines []PricedLine, discount decimal.Decimal, cfg PricingConfig) Quote {
	subtotal := Subtotal(lines)
	tax := subtotal.Mul(cfg.TaxRate).Round(2)

	shipping := cfg.FlatShippingFee
	if subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		// 折扣吃穿了税费和运费也只降到零，不会倒贴。
		discount = subtotal.Add(tax).Add(shipping)
		total = decimal.Zero
	}

	return Quote{
		Lines:       lines,
		Subtotal:    subtotal,
		Tax:         tax,
		ShippingFee: shipping,
		Discount:    discount,
		Total:       total,
	}
}
