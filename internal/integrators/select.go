package integrators

import "github.com/san-kum/dplsim/internal/dynamo"

// For returns a fresh integrator for the method.
func For(m dynamo.IntegrationMethod) (dynamo.Integrator, error) {
	switch m {
	case dynamo.Euler:
		return NewEuler(), nil
	case dynamo.RungeKutta:
		return NewRK4(), nil
	}
	return nil, dynamo.Configf("no integrator for method %s", m)
}
