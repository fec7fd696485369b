package luhn

// Validate checks a card number with the Luhn checksum. Spaces and dashes are ignored;
// any other non-digit rejects the number.
func Validate(number string) bool {
	sum := 0
	digits := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		ch := number[i]
		if ch == ' ' || ch == '-' {
			continue
		}
		if ch < '0' || ch > '9' {
			return false
		}
		d := int(ch - '0')
		if alternate {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		digits++
		alternate = !alternate
	}
	return digits > 0 && sum%10 == 0
}

// Digits strips everything but digits from number.
func Digits(number string) string {
	out := make([]byte, 0, len(number))
	for i := 0; i < len(number); i++ {
		if number[i] >= '0' && number[i] <= '9' {
			out = append(out, number[i])
		}
	}
	return string(out)
}
