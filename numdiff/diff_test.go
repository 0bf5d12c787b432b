package numdiff

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func objV2(x []float64) ([]float64, error) {
	return []float64{
		x[0] * math.Sin(x[1]),
		x[1] * math.Cos(x[0]),
		math.Pow(x[0], 3) * math.Pow(x[1], -0.5),
	}, nil
}

func jacV2(x []float64) []float64 {
	return []float64{
		math.Sin(x[1]), x[0] * math.Cos(x[1]),
		-x[1] * math.Sin(x[0]), math.Cos(x[0]),
		3 * math.Pow(x[0], 2) * math.Pow(x[1], -0.5), -0.5 * math.Pow(x[0], 3) * math.Pow(x[1], -1.5),
	}
}

func objZero(x []float64) ([]float64, error) {
	return []float64{x[0] * x[1], math.Cos(x[0] * x[1])}, nil
}

func jacZero(x []float64) []float64 {
	return []float64{
		x[1], x[0],
		-x[1] * math.Sin(x[0]*x[1]), -x[0] * math.Sin(x[0]*x[1]),
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py (test_absolute_step_sign)
func TestComputeAbsStp(t *testing.T) {

	x0 := []float64{1e-5, 0, 1, 1e5}

	// auto select relative step
	for method, relStep := range map[Method]float64{
		Forward: sqrtEps,
		Central: cubeEps,
	} {

		expected := []float64{
			relStep,
			relStep * 1,
			relStep * 1,
			relStep * math.Abs(x0[3]),
		}

		as := Approx{Method: method}
		if !relativeEqual(as.absoluteStep(x0), expected, 1e-12) {
			t.Fatal("unexpected abs step")
		}

		negX0 := make([]float64, len(x0))
		for i, v := range x0 {
			negX0[i] = -v
			expected[i] = math.Copysign(expected[i], -v)
		}

		if !relativeEqual(as.absoluteStep(negX0), expected, 1e-12) {
			t.Fatal("unexpected abs step")
		}
	}

	// user-specified relative step
	for _, relStep := range []float64{0.1, 1, 10, 100} {

		expected := []float64{
			relStep * x0[0],
			sqrtEps,
			relStep * x0[2],
			relStep * x0[3],
		}

		as := Approx{Method: Forward, RelStep: relStep}
		if !relativeEqual(as.absoluteStep(x0), expected, 1e-12) {
			t.Fatal("unexpected abs step")
		}
	}

}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py (test_absolute_step_sign)
func TestAbsStpSign(t *testing.T) {

	obj := func(x []float64) (float64, error) {
		return -math.Abs(x[0]+1) + math.Abs(x[1]+1), nil
	}

	x0 := []float64{-1, -1}

	as := Approx{Method: Forward, AbsStep: 1e-8}
	grad, err := as.Gradient(obj, x0)
	if err != nil {
		t.Fatal("abs sign failed", err)
	}
	if !relativeEqual(grad, []float64{-1.0, 1.0}, 1e-7) {
		t.Fatal("unexpected abs sign")
	}

	as = Approx{Method: Forward, AbsStep: -1e-8}
	grad, err = as.Gradient(obj, x0)
	if err != nil {
		t.Fatal("abs sign failed", err)
	}
	if !relativeEqual(grad, []float64{1.0, -1.0}, 1e-7) {
		t.Fatal("unexpected abs sign")
	}

	if x0[0] != -1 || x0[1] != -1 {
		t.Fatal("x0 modified")
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_check_derivative)
func TestAccuracy(t *testing.T) {

	checkDerivative := func(m, n int, x0 []float64, fun VecFunc, jac func(x []float64) []float64) float64 {

		jacTest := mat.NewDense(m, n, jac(x0))

		approx := Approx{Method: Central}
		jacDiff, err := approx.Jacobian(fun, x0)
		if err != nil {
			panic(err)
		}

		maxErr := 0.0
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				absErr := math.Abs(jacTest.At(i, j) - jacDiff.At(i, j))
				absErr /= math.Max(1, math.Abs(jacDiff.At(i, j)))
				maxErr = math.Max(maxErr, absErr)
			}
		}
		return maxErr
	}

	x0 := []float64{-10.0, 10}
	if acc := checkDerivative(3, 2, x0, objV2, jacV2); acc > 1e-9 {
		t.Fatal("approx accuracy not enough")
	}

	x0 = []float64{0, 0}
	if acc := checkDerivative(2, 2, x0, objZero, jacZero); acc > 0 {
		t.Fatal("approx accuracy not enough")
	}

}

func TestForward(t *testing.T) {

	x0 := []float64{1.5, 2.5}
	want := mat.NewDense(3, 2, jacV2(x0))

	approx := Approx{Method: Forward}
	got, err := approx.Jacobian(objV2, x0)
	switch {
	case err != nil:
		t.Fatal("forward diff failed", err)
	case !mat.EqualApprox(got, want, 1e-6):
		t.Fatalf("unexpected forward jacobian\n%v", mat.Formatted(got))
	}
}

func TestBadInput(t *testing.T) {

	approx := Approx{Method: Central}

	if _, err := approx.Jacobian(objV2, nil); err == nil {
		t.Fatal("empty x0 accepted")
	}
	if _, err := approx.Jacobian(nil, []float64{1}); err == nil {
		t.Fatal("nil function accepted")
	}
	if _, err := (&Approx{Method: Method(7)}).Jacobian(objV2, []float64{1, 1}); err == nil {
		t.Fatal("unknown method accepted")
	}

	calls := 0
	shrinking := func(x []float64) ([]float64, error) {
		calls++
		return make([]float64, 3-calls%2), nil
	}
	if _, err := approx.Jacobian(shrinking, []float64{1}); err == nil {
		t.Fatal("changing output length accepted")
	}

	fail := errors.New("domain error")
	failing := func(x []float64) ([]float64, error) {
		if x[0] > 1 {
			return nil, fail
		}
		return []float64{x[0]}, nil
	}
	if _, err := approx.Jacobian(failing, []float64{1}); !errors.Is(err, fail) {
		t.Fatal("evaluation error not propagated", err)
	}
}

func relativeEqual[T float64 | []float64](a, b T, tol float64) bool {
	equalWithinRel := func(a, b float64) bool {
		if a == b {
			return true
		}
		delta := math.Abs(a - b)
		return delta/math.Max(math.Abs(a), math.Abs(b)) <= tol
	}
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Float64:
		return equalWithinRel(any(a).(float64), any(b).(float64))
	case reflect.Slice:
		a, b := any(a).([]float64), any(b).([]float64)
		if len(a) != len(b) {
			return false
		}
		for i, a := range a {
			if !equalWithinRel(a, b[i]) {
				return false
			}
		}
		return true
	default:
		panic("unknown type")
	}
}
