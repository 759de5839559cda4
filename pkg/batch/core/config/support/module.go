package support

import (
	"go.uber.org/fx"
)

// JobRegistrationGroup is the Fx value group collecting JobRegistration values.
const JobRegistrationGroup = "job_registrations"

// JobRegistrationsParams aggregates the job registrations contributed by application modules.
type JobRegistrationsParams struct {
	fx.In
	Registrations []JobRegistration `group:"job_registrations"`
}

// RegisterJobs adds every contributed registration to the JobFactory.
func RegisterJobs(jf *JobFactory, p JobRegistrationsParams) {
	for _, r := range p.Registrations {
		jf.Register(r)
	}
}

// ProvideJob contributes a registration built by constructor to the JobFactory.
// constructor may take any dependency available in the Fx graph.
func ProvideJob(constructor interface{}) fx.Option {
	return fx.Provide(fx.Annotate(constructor, fx.ResultTags(`group:"job_registrations"`)))
}

// Module defines Fx options related to JobFactory.
var Module = fx.Options(
	fx.Provide(NewJobFactory),
	fx.Invoke(RegisterJobs),
)
