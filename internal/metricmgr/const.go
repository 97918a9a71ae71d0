package metricmgr

type Metric string

const (
	TotalPoliciesRead      Metric = "totalPoliciesRead"
	TotalPoliciesGenerated Metric = "totalPoliciesGenerated"
	TotalCleanupPolicies   Metric = "totalCleanupPolicies"
	TotalRegions           Metric = "totalRegions"
	TotalFilesWritten      Metric = "totalFilesWritten"
	TotalFilesUploaded     Metric = "totalFilesUploaded"

	TotalFailedChecks  Metric = "totalFailedChecks"
	TotalFailedRegions Metric = "totalFailedRegions"
)

var allMetrics = []Metric{
	TotalPoliciesRead,
	TotalPoliciesGenerated,
	TotalCleanupPolicies,
	TotalRegions,
	TotalFilesWritten,
	TotalFilesUploaded,
	TotalFailedChecks,
	TotalFailedRegions,
}
