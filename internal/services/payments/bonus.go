package payments

// Bonus is one free ticket per full ten bought.
func Bonus(quantity int) int {
	if quantity <= 0 {
		return 0
	}

	return quantity / 10
}
