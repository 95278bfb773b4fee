package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is a rational frame rate, frames per second = Num/Den.
type Rate struct {
	Num int64
	Den int64
}

// RateFromFloat approximates fps with a millihertz denominator.
func RateFromFloat(fps float64) Rate {
	return Rate{Num: int64(fps*1000 + 0.5), Den: 1000}.Reduce()
}

// ParseRate accepts "30", "29.97" or "30000/1001".
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return Rate{}, fmt.Errorf("invalid frame rate %q: %w", s, err)
		}
		d, err := strconv.ParseInt(den, 10, 64)
		if err != nil {
			return Rate{}, fmt.Errorf("invalid frame rate %q: %w", s, err)
		}
		r := Rate{Num: n, Den: d}
		if !r.Valid() {
			return Rate{}, fmt.Errorf("invalid frame rate %q", s)
		}
		return r.Reduce(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return Rate{}, fmt.Errorf("invalid frame rate %q", s)
	}
	return RateFromFloat(f), nil
}

// Valid reports whether both terms are positive.
func (r Rate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Reduce divides both terms by their greatest common divisor.
func (r Rate) Reduce() Rate {
	a, b := r.Num, r.Den
	for b != 0 {
		a, b = b, a%b
	}
	if a <= 1 {
		return r
	}
	return Rate{Num: r.Num / a, Den: r.Den / a}
}

// Float64 returns frames per second.
func (r Rate) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Offset returns index/rate as a duration, computed in integer arithmetic so
// that equal inputs always give the same nanosecond value.
func (r Rate) Offset(index uint64) time.Duration {
	if !r.Valid() {
		return 0
	}
	i := int64(index)
	whole := i * r.Den / r.Num
	rem := i * r.Den % r.Num
	return time.Duration(whole)*time.Second + time.Duration(rem*int64(time.Second)/r.Num)
}

// Period returns the duration of one frame.
func (r Rate) Period() time.Duration {
	return r.Offset(1)
}

func (r Rate) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
