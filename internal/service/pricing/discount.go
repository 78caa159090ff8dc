// Package pricing рассчитывает итоговую сумму заказа со скидками.
package pricing

import "github.com/shopspring/decimal"

var (
	largeOrderThreshold = decimal.NewFromInt(1000)
	largeOrderRate      = decimal.RequireFromString("0.10")
	manyProductsRate    = decimal.RequireFromString("0.05")
)

// manyProductsThreshold — сколько различных товаров нужно превысить для скидки за ассортимент.
const manyProductsThreshold = 5

// Rate возвращает суммарную ставку скидки. Правила складываются, верхней границы нет.
func Rate(total decimal.Decimal, distinctProducts int) decimal.Decimal {
	rate := decimal.Zero
	if total.GreaterThan(largeOrderThreshold) {
		rate = rate.Add(largeOrderRate)
	}
	if distinctProducts > manyProductsThreshold {
		rate = rate.Add(manyProductsRate)
	}
	return rate
}

// ApplyDiscount возвращает total × (1 − rate) без округления.
func ApplyDiscount(total decimal.Decimal, distinctProducts int) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(1).Sub(Rate(total, distinctProducts)))
}
