package context

// DefaultDbCPU is the cpu of a database task when the context does not set one.
const DefaultDbCPU = 256

// StageProps selects the optional stages of a pipeline.
type StageProps struct {
	EnableStaging  bool
	EnableTest     bool
	EnableApproval bool
	EnableDeploy   bool

	// PrivilegedBuild runs the build project in privileged mode, as needed for docker builds.
	PrivilegedBuild bool

	StagingSpecFilename string
	TestSpecFilename    string
	DeploySpecFilename  string
}

// DbProps sizes the database task of a service.
type DbProps struct {
	CPU int
}

// BuildStageProps reads the stage flags of a pipeline context. Missing keys are disabled or empty.
func BuildStageProps(ctx Context) (StageProps, error) {
	var props StageProps

	flags := []struct {
		key string
		dst *bool
	}{
		{"enableStaging", &props.EnableStaging},
		{"enableTest", &props.EnableTest},
		{"enableApproval", &props.EnableApproval},
		{"enableDeploy", &props.EnableDeploy},
		{"privilegedBuild", &props.PrivilegedBuild},
	}
	for _, f := range flags {
		v, err := ctx.boolValue(f.key)
		if err != nil {
			return StageProps{}, err
		}
		*f.dst = v
	}

	filenames := []struct {
		key string
		dst *string
	}{
		{"stagingSpecFilename", &props.StagingSpecFilename},
		{"testSpecFilename", &props.TestSpecFilename},
		{"deploySpecFilename", &props.DeploySpecFilename},
	}
	for _, f := range filenames {
		v, err := ctx.stringValue(f.key)
		if err != nil {
			return StageProps{}, err
		}
		*f.dst = v
	}

	return props, nil
}

// BuildDbProps reads the database sizing of a service context.
func BuildDbProps(ctx Context) (DbProps, error) {
	cpu, err := ctx.intValue("cpu", DefaultDbCPU)
	if err != nil {
		return DbProps{}, err
	}
	return DbProps{CPU: cpu}, nil
}
