package postgresql

// migrations returns the schema migrations keyed by version. Versions are
// applied in ascending order by the migration manager.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				steps JSONB NOT NULL DEFAULT '[]',
				scope VARCHAR(50) NOT NULL DEFAULT 'personal',
				environment VARCHAR(50) NOT NULL DEFAULT 'dev',
				version INTEGER NOT NULL DEFAULT 1,
				tags JSONB NOT NULL DEFAULT '[]',
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_project_id ON workflows(project_id);
			CREATE INDEX IF NOT EXISTS idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS overnight_runs (
				id UUID PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				workflow_ids JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL DEFAULT 'scheduled',
				current_workflow_index INTEGER NOT NULL DEFAULT 0,
				workflow_results JSONB NOT NULL DEFAULT '[]',
				total_tokens_input BIGINT NOT NULL DEFAULT 0,
				total_tokens_output BIGINT NOT NULL DEFAULT 0,
				total_cost NUMERIC(18, 6) NOT NULL DEFAULT 0,
				scheduled_for TIMESTAMP WITH TIME ZONE,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				config JSONB,
				tags JSONB NOT NULL DEFAULT '[]',
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_overnight_runs_project_id ON overnight_runs(project_id);
			CREATE INDEX IF NOT EXISTS idx_overnight_runs_status ON overnight_runs(status);
			CREATE INDEX IF NOT EXISTS idx_overnight_runs_scheduled_for ON overnight_runs(scheduled_for);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS workflow_executions (
				id UUID PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				current_step_id VARCHAR(255),
				step_results JSONB NOT NULL DEFAULT '{}',
				input TEXT NOT NULL DEFAULT '',
				output TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_by VARCHAR(255) NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_executions_project_id ON workflow_executions(project_id);
			CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX IF NOT EXISTS idx_workflow_executions_status ON workflow_executions(status);
		`,
		4: `
			CREATE TABLE IF NOT EXISTS gates (
				id UUID PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL,
				execution_id UUID NOT NULL,
				step_id VARCHAR(255) NOT NULL,
				gate_type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				reviewed_by VARCHAR(255) NOT NULL DEFAULT '',
				rejection_reason TEXT NOT NULL DEFAULT '',
				config JSONB NOT NULL DEFAULT '{}',
				context JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_by VARCHAR(255) NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_gates_project_id ON gates(project_id);
			CREATE INDEX IF NOT EXISTS idx_gates_execution_id ON gates(execution_id);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_gates_execution_step ON gates(execution_id, step_id);
		`,
		5: `
			CREATE TABLE IF NOT EXISTS interventions (
				id UUID PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL,
				execution_id UUID NOT NULL,
				step_id VARCHAR(255),
				intervention_type VARCHAR(50) NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				data JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				created_by VARCHAR(255) NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_interventions_project_id ON interventions(project_id);
			CREATE INDEX IF NOT EXISTS idx_interventions_execution_id ON interventions(execution_id);
			CREATE INDEX IF NOT EXISTS idx_interventions_status ON interventions(status);
		`,
	}
}
