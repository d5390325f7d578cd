// Package dynamo provides the core records and interfaces shared by every
// stage of a directed-percolation Langevin experiment.
//
//   - [Parameters], [Analysis], [Misc]: the three records of a run ([Info])
//   - [GridDimension], [GridTopology], [BoundaryCondition],
//     [InitialCondition], [IntegrationMethod]: closed sentinel enumerations
//   - [TimeSeries]: epoch times and grid-mean densities of a run
//   - [Stepper]: the capability surface of an external stepping engine
//   - [System], [Integrator]: rate equations and their single-step schemes
//
// # Errors
//
// Failures are classified by the sentinel errors [ErrConfiguration],
// [ErrEngineFailure], [ErrSerializationGap] and [ErrPersistence]; use
// errors.Is to test for them through [RunError] wrapping.
//
// # Thread Safety
//
// Records are plain values. An ensemble hands each member its own
// [Info.Clone] so that no record is shared between concurrent runs.
package dynamo
