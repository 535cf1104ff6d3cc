package nt

// Primes returns all primes p <= limit in increasing order.
func Primes(limit int64) []int64 {
	if limit < 2 {
		return nil
	}
	composite := make([]bool, limit+1)
	// pi(x) < 1.25506 x / ln x; a rough capacity is enough here.
	primes := make([]int64, 0, estimatePrimeCount(limit))
	for i := int64(2); i <= limit; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, i)
		if i > limit/i {
			continue
		}
		for j := i * i; j <= limit; j += i {
			composite[j] = true
		}
	}
	return primes
}

func estimatePrimeCount(limit int64) int {
	if limit < 17 {
		return 8
	}
	n := 0
	for x := limit; x > 1; x >>= 1 {
		n++
	}
	// ln x ~ 0.693 * log2 x
	return int(float64(limit)*1.25506/(0.6931*float64(n))) + 1
}

// IsPrime tests n by trial division. Callers use it on small values only.
func IsPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n < 4 {
		return true
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}
	for d := int64(5); d <= n/d; d += 6 {
		if n%d == 0 || n%(d+2) == 0 {
			return false
		}
	}
	return true
}

// NextPrime returns the smallest prime >= n.
func NextPrime(n int64) int64 {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for !IsPrime(n) {
		n += 2
	}
	return n
}

// Factorize returns the prime factorization of n > 0 as parallel slices of
// primes and exponents, primes increasing.
func Factorize(n int64) (primes []int64, exps []int) {
	for p := int64(2); p <= n/p; p++ {
		if n%p != 0 {
			continue
		}
		e := 0
		for n%p == 0 {
			n /= p
			e++
		}
		primes = append(primes, p)
		exps = append(exps, e)
	}
	if n > 1 {
		primes = append(primes, n)
		exps = append(exps, 1)
	}
	return primes, exps
}
