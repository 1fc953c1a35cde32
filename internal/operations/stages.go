package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"pricepipe/internal/config"
	"pricepipe/internal/dataprep"
	"pricepipe/internal/dataset"
	"pricepipe/internal/outliers"
	"pricepipe/internal/regress"
	"pricepipe/internal/report"
	"pricepipe/internal/split"
	"pricepipe/internal/tracking"
)

// StageDeps bundles the shared dependencies of the concrete steps.
type StageDeps struct {
	Paths    config.PathsConfig
	Pipeline config.PipelineConfig
	Tracker  *tracking.Store
	Logger   *slog.Logger
}

func (d StageDeps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// RegisterTrainingSteps registers the full training pipeline on the manager.
func RegisterTrainingSteps(m *Manager, deps StageDeps) error {
	return registerAll(m,
		NewIngestStep(deps),
		NewCleanStep(deps),
		NewFeaturesStep(deps),
		NewOutliersStep(deps),
		NewSplitStep(deps),
		NewTrainStep(deps),
		NewEvaluateStep(deps),
	)
}

// RegisterEDASteps registers the exploratory reporting pipeline.
func RegisterEDASteps(m *Manager, deps StageDeps) error {
	return registerAll(m,
		NewIngestStep(deps),
		NewReportStep(deps),
	)
}

// RegisterDeploySteps registers the standalone deployment pipeline.
func RegisterDeploySteps(m *Manager, deps StageDeps) error {
	return registerAll(m, NewDeployStep(deps))
}

func registerAll(m *Manager, steps ...Step) error {
	for _, step := range steps {
		if err := m.RegisterStage(step); err != nil {
			return err
		}
	}
	return nil
}

// config helpers: request parameters override the static pipeline config.

func (d StageDeps) stringParam(state *OperationState, key, fallback string) string {
	if v, ok := state.GetConfig(key); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func (d StageDeps) floatParam(state *OperationState, key string, fallback float64) float64 {
	if v, ok := state.GetConfig(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (d StageDeps) intParam(state *OperationState, key string, fallback int64) int64 {
	if v, ok := state.GetConfig(key); ok {
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int:
			return int64(n)
		case int64:
			return n
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (d StageDeps) boolParam(state *OperationState, key string, fallback bool) bool {
	if v, ok := state.GetConfig(key); ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	}
	return fallback
}

// stateDataset pulls a dataset out of the operation context.
func stateDataset(state *OperationState, key string) (*dataset.Dataset, error) {
	v, ok := state.GetContext(key)
	if !ok {
		return nil, fmt.Errorf("no dataset under %s", key)
	}
	ds, ok := v.(*dataset.Dataset)
	if !ok {
		return nil, fmt.Errorf("context value %s is not a dataset", key)
	}
	return ds, nil
}

// logRunParam records a parameter against the tracking run, when both
// a tracker and a run ID are present.
func (d StageDeps) logRunParam(state *OperationState, key, value string) {
	if d.Tracker == nil {
		return
	}
	runID, ok := state.GetConfig(ContextKeyRunID)
	if !ok {
		return
	}
	id, ok := runID.(string)
	if !ok || id == "" {
		return
	}
	if err := d.Tracker.LogParam(id, key, value); err != nil {
		d.logger().Warn("param not recorded", "key", key, "error", err)
	}
}

// IngestStep loads the source archive or file into a dataset.
type IngestStep struct {
	BaseStage
	deps StageDeps
}

// NewIngestStep creates the ingestion step.
func NewIngestStep(deps StageDeps) *IngestStep {
	return &IngestStep{
		BaseStage: NewBaseStage(StageIDIngest, StageNameIngest, nil),
		deps:      deps,
	}
}

func (s *IngestStep) Execute(ctx context.Context, state *OperationState) error {
	source := s.deps.stringParam(state, ContextKeySourcePath, s.deps.Paths.ArchiveFile)
	member := s.deps.stringParam(state, ContextKeyArchiveMember, s.deps.Pipeline.ArchiveMember)

	logger := s.deps.logger()
	logger.InfoContext(ctx, "ingesting data", "source", source, "member", member)
	ReportProgress(ctx, 10, "reading source")

	var ds *dataset.Dataset
	var err error
	if filepath.Ext(source) == ".zip" && member != "" {
		ds, err = dataset.NewArchiveReader(member, logger).Read(source)
	} else {
		ds, err = dataset.Load(source, logger)
	}
	if err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("loading %s: %w", source, err), false)
	}
	ReportProgress(ctx, 70, fmt.Sprintf("loaded %d rows", ds.NumRows()))

	target := s.deps.stringParam(state, ContextKeyTarget, s.deps.Pipeline.Target)
	if !ds.HasColumn(target) {
		return NewValidationError(s.ID(), fmt.Sprintf("target column %s not present in %s", target, source))
	}

	state.SetContext(ContextKeyDataset, ds)
	state.SetContext(ContextKeyRowsIngested, ds.NumRows())
	state.SetConfig(ContextKeyTarget, target)

	s.deps.logRunParam(state, "source", source)
	s.deps.logRunParam(state, "target", target)

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("rows", ds.NumRows())
		stepState.SetMeta("columns", ds.NumCols())
	}

	logger.InfoContext(ctx, "ingest complete", "rows", ds.NumRows(), "columns", ds.NumCols())
	return nil
}

// CleanStep drops rows with a missing target and imputes the rest.
type CleanStep struct {
	BaseStage
	deps StageDeps
}

// NewCleanStep creates the missing-value handling step.
func NewCleanStep(deps StageDeps) *CleanStep {
	return &CleanStep{
		BaseStage: NewBaseStage(StageIDClean, StageNameClean, []string{StageIDIngest}),
		deps:      deps,
	}
}

func (s *CleanStep) Validate(state *OperationState) error {
	if _, err := stateDataset(state, ContextKeyDataset); err != nil {
		return err
	}
	return nil
}

func (s *CleanStep) Execute(ctx context.Context, state *OperationState) error {
	ds, err := stateDataset(state, ContextKeyDataset)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	target := s.deps.stringParam(state, ContextKeyTarget, s.deps.Pipeline.Target)
	strategyName := s.deps.stringParam(state, "impute", s.deps.Pipeline.Impute)
	strategy, err := dataprep.ParseImputeStrategy(strategyName)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	before := ds.NumRows()

	// Rows without a label cannot be trained on or scored.
	dropTarget := &dataprep.Imputer{Strategy: dataprep.ImputeDrop, Columns: []string{target}}
	if err := dataprep.FitTransform(dropTarget, ds); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	imputer := &dataprep.Imputer{Strategy: strategy}
	if err := dataprep.FitTransform(imputer, ds); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	// Mean and median only touch numeric columns, so categoricals get a
	// separate mode fill before encoding.
	if strategy == dataprep.ImputeMean || strategy == dataprep.ImputeMedian {
		var cats []string
		for _, col := range ds.Columns() {
			if col.Kind == dataset.KindCategorical && col.MissingCount() > 0 {
				cats = append(cats, col.Name)
			}
		}
		if len(cats) > 0 {
			modeFill := &dataprep.Imputer{Strategy: dataprep.ImputeMode, Columns: cats}
			if err := dataprep.FitTransform(modeFill, ds); err != nil {
				return NewExecutionError(s.ID(), err, false)
			}
		}
	}

	dropped := before - ds.NumRows()
	s.deps.logRunParam(state, "impute", string(strategy))

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("rows_dropped", dropped)
	}

	s.deps.logger().InfoContext(ctx, "missing values handled",
		"strategy", string(strategy), "rows_dropped", dropped)
	return nil
}

// FeaturesStep derives model features: optional log target, one-hot
// encoded categoricals, and standardized numeric columns.
type FeaturesStep struct {
	BaseStage
	deps StageDeps
}

// NewFeaturesStep creates the feature engineering step.
func NewFeaturesStep(deps StageDeps) *FeaturesStep {
	return &FeaturesStep{
		BaseStage: NewBaseStage(StageIDFeatures, StageNameFeatures, []string{StageIDClean}),
		deps:      deps,
	}
}

func (s *FeaturesStep) Execute(ctx context.Context, state *OperationState) error {
	ds, err := stateDataset(state, ContextKeyDataset)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	target := s.deps.stringParam(state, ContextKeyTarget, s.deps.Pipeline.Target)
	logTarget := s.deps.boolParam(state, "log_target", s.deps.Pipeline.LogTarget)

	var numeric, categorical []string
	for _, col := range ds.Columns() {
		if col.Name == target {
			continue
		}
		if col.Kind == dataset.KindNumeric {
			numeric = append(numeric, col.Name)
		} else {
			categorical = append(categorical, col.Name)
		}
	}

	var steps []dataprep.Transformer
	if logTarget {
		steps = append(steps, &dataprep.LogTransform{Columns: []string{target}})
	}
	scaler := &dataprep.StandardScaler{Columns: numeric}
	if len(numeric) > 0 {
		steps = append(steps, scaler)
	}
	if len(categorical) > 0 {
		steps = append(steps, &dataprep.OneHotEncoder{Columns: categorical, DropFirst: true})
	}

	chain := dataprep.NewChain(steps...)
	if err := dataprep.FitTransform(chain, ds); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	state.SetContext(ContextKeyChain, chain)
	state.SetContext("scale_params", scaler.Params())
	state.SetConfig("log_target", logTarget)

	s.deps.logRunParam(state, "log_target", strconv.FormatBool(logTarget))
	s.deps.logRunParam(state, "encoded_columns", strconv.Itoa(len(categorical)))

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("features", ds.NumCols()-1)
	}

	s.deps.logger().InfoContext(ctx, "features engineered",
		"numeric", len(numeric), "categorical", len(categorical), "log_target", logTarget)
	return nil
}

// OutliersStep removes or caps extreme rows before splitting.
type OutliersStep struct {
	BaseStage
	deps StageDeps
}

// NewOutliersStep creates the outlier handling step.
func NewOutliersStep(deps StageDeps) *OutliersStep {
	return &OutliersStep{
		BaseStage: NewBaseStage(StageIDOutliers, StageNameOutliers, []string{StageIDFeatures}),
		deps:      deps,
	}
}

func (s *OutliersStep) Execute(ctx context.Context, state *OperationState) error {
	ds, err := stateDataset(state, ContextKeyDataset)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	method, err := outliers.ParseMethod(s.deps.stringParam(state, "outlier_method", s.deps.Pipeline.OutlierMethod))
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}
	strategy, err := outliers.ParseStrategy(s.deps.stringParam(state, "outlier_strategy", s.deps.Pipeline.OutlierStrategy))
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	target := s.deps.stringParam(state, ContextKeyTarget, s.deps.Pipeline.Target)

	before := ds.NumRows()
	detector := &outliers.Detector{Method: method, Columns: []string{target}}
	rpt, err := detector.Apply(ds, strategy)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	removed := before - ds.NumRows()

	state.SetContext(ContextKeyRowsRemoved, removed)
	s.deps.logRunParam(state, "outlier_method", string(method))
	s.deps.logRunParam(state, "outlier_strategy", string(strategy))

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("rows_flagged", rpt.RowsFlagged)
		stepState.SetMeta("rows_removed", removed)
	}

	s.deps.logger().InfoContext(ctx, "outliers handled",
		"method", string(method), "strategy", string(strategy),
		"flagged", rpt.RowsFlagged, "removed", removed)
	return nil
}

// SplitStep partitions the dataset into train and test sets.
type SplitStep struct {
	BaseStage
	deps StageDeps
}

// NewSplitStep creates the train/test split step.
func NewSplitStep(deps StageDeps) *SplitStep {
	return &SplitStep{
		BaseStage: NewBaseStage(StageIDSplit, StageNameSplit, []string{StageIDOutliers}),
		deps:      deps,
	}
}

func (s *SplitStep) Execute(ctx context.Context, state *OperationState) error {
	ds, err := stateDataset(state, ContextKeyDataset)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	ratio := s.deps.floatParam(state, "test_ratio", s.deps.Pipeline.TestRatio)
	seed := s.deps.intParam(state, "seed", s.deps.Pipeline.Seed)

	result, err := split.TrainTest(ds, ratio, seed)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	state.SetContext(ContextKeyTrainSet, result.Train)
	state.SetContext(ContextKeyTestSet, result.Test)

	s.deps.logRunParam(state, "test_ratio", strconv.FormatFloat(ratio, 'g', -1, 64))
	s.deps.logRunParam(state, "seed", strconv.FormatInt(seed, 10))

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("train_rows", result.Train.NumRows())
		stepState.SetMeta("test_rows", result.Test.NumRows())
	}

	s.deps.logger().InfoContext(ctx, "dataset split",
		"train_rows", result.Train.NumRows(), "test_rows", result.Test.NumRows(),
		"ratio", ratio, "seed", seed)
	return nil
}

// TrainStep fits the linear model on the training set and persists
// the resulting artifact.
type TrainStep struct {
	BaseStage
	deps StageDeps
}

// NewTrainStep creates the model training step.
func NewTrainStep(deps StageDeps) *TrainStep {
	return &TrainStep{
		BaseStage: NewBaseStage(StageIDTrain, StageNameTrain, []string{StageIDSplit}),
		deps:      deps,
	}
}

func (s *TrainStep) Execute(ctx context.Context, state *OperationState) error {
	train, err := stateDataset(state, ContextKeyTrainSet)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}

	target := s.deps.stringParam(state, ContextKeyTarget, s.deps.Pipeline.Target)
	lambda := s.deps.floatParam(state, "ridge", s.deps.Pipeline.Ridge)
	logTarget := s.deps.boolParam(state, "log_target", s.deps.Pipeline.LogTarget)

	features := featureColumns(train, target)
	if len(features) == 0 {
		return NewValidationError(s.ID(), "no numeric feature columns to train on")
	}

	X, err := train.Matrix(features)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	y, err := train.Numeric(target)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	ReportProgress(ctx, 30, "fitting model")
	model := regress.NewRidgeRegression(lambda)
	if err := model.Fit(X, y); err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("fitting model: %w", err), false)
	}
	ReportProgress(ctx, 80, "model fitted")

	var scale map[string]dataprep.ScaleParams
	if v, ok := state.GetContext("scale_params"); ok {
		if params, ok := v.(map[string]dataprep.ScaleParams); ok {
			scale = params
		}
	}

	artifact, err := regress.NewArtifact(model, target, logTarget, features, scale)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	runID := s.deps.stringParam(state, ContextKeyRunID, "")
	name := runID
	if name == "" {
		name = fmt.Sprintf("model-%d", time.Now().Unix())
	}
	artifactPath := filepath.Join(s.deps.Paths.ModelsDir, name+".json")
	if err := artifact.Save(artifactPath); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	state.SetContext(ContextKeyModel, model)
	state.SetContext(ContextKeyArtifactPath, artifactPath)

	if s.deps.Tracker != nil && runID != "" {
		saved, err := s.deps.Tracker.SaveModel(runID, artifactPath)
		if err != nil {
			s.deps.logger().Warn("model not registered", "error", err)
		} else {
			state.SetContext(ContextKeyModelID, saved.ID)
		}
	}
	s.deps.logRunParam(state, "ridge", strconv.FormatFloat(lambda, 'g', -1, 64))
	s.deps.logRunParam(state, "features", strconv.Itoa(len(features)))

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("features", len(features))
		stepState.SetMeta("artifact", artifactPath)
	}

	s.deps.logger().InfoContext(ctx, "model trained",
		"features", len(features), "ridge", lambda, "artifact", artifactPath)
	return nil
}

// EvaluateStep scores the fitted model on the held-out test set.
type EvaluateStep struct {
	BaseStage
	deps StageDeps
}

// NewEvaluateStep creates the evaluation step.
func NewEvaluateStep(deps StageDeps) *EvaluateStep {
	return &EvaluateStep{
		BaseStage: NewBaseStage(StageIDEvaluate, StageNameEvaluate, []string{StageIDTrain}),
		deps:      deps,
	}
}

func (s *EvaluateStep) Execute(ctx context.Context, state *OperationState) error {
	test, err := stateDataset(state, ContextKeyTestSet)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}
	modelVal, ok := state.GetContext(ContextKeyModel)
	if !ok {
		return NewValidationError(s.ID(), "no fitted model in operation context")
	}
	model, ok := modelVal.(*regress.LinearRegression)
	if !ok {
		return NewValidationError(s.ID(), "operation context holds an unexpected model type")
	}

	target := s.deps.stringParam(state, ContextKeyTarget, s.deps.Pipeline.Target)
	logTarget := s.deps.boolParam(state, "log_target", s.deps.Pipeline.LogTarget)

	features := featureColumns(test, target)
	X, err := test.Matrix(features)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	yTrue, err := test.Numeric(target)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	yPred, err := model.Predict(X)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	// Metrics are reported in the original price scale.
	if logTarget {
		yTrue = dataprep.Expm1(yTrue)
		yPred = dataprep.Expm1(yPred)
	}

	rpt, err := regress.Evaluate(yTrue, yPred)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	metrics := map[string]float64{
		"mse":  rpt.MSE,
		"rmse": rpt.RMSE,
		"mae":  rpt.MAE,
		"r2":   rpt.R2,
	}
	state.SetContext(ContextKeyMetrics, metrics)

	if s.deps.Tracker != nil {
		if runID := s.deps.stringParam(state, ContextKeyRunID, ""); runID != "" {
			if err := s.deps.Tracker.LogMetrics(runID, metrics); err != nil {
				s.deps.logger().Warn("metrics not recorded", "error", err)
			}
		}
	}

	if stepState := state.GetStage(s.ID()); stepState != nil {
		for k, v := range metrics {
			stepState.SetMeta(k, v)
		}
	}

	s.deps.logger().InfoContext(ctx, "model evaluated",
		"rmse", rpt.RMSE, "mae", rpt.MAE, "r2", rpt.R2, "n", rpt.N)
	return nil
}

// ReportStep writes the exploratory profile of the source data. It can
// run standalone: when no dataset is in the operation context it loads
// the source itself.
type ReportStep struct {
	BaseStage
	deps StageDeps
}

// NewReportStep creates the exploratory report step.
func NewReportStep(deps StageDeps) *ReportStep {
	return &ReportStep{
		BaseStage: NewBaseStage(StageIDReport, StageNameReport, []string{StageIDIngest}),
		deps:      deps,
	}
}

func (s *ReportStep) Execute(ctx context.Context, state *OperationState) error {
	logger := s.deps.logger()
	source := s.deps.stringParam(state, ContextKeySourcePath, s.deps.Paths.ArchiveFile)
	target := s.deps.stringParam(state, ContextKeyTarget, s.deps.Pipeline.Target)

	ds, err := stateDataset(state, ContextKeyDataset)
	if err != nil {
		member := s.deps.stringParam(state, ContextKeyArchiveMember, s.deps.Pipeline.ArchiveMember)
		if filepath.Ext(source) == ".zip" && member != "" {
			ds, err = dataset.NewArchiveReader(member, logger).Read(source)
		} else {
			ds, err = dataset.Load(source, logger)
		}
		if err != nil {
			return NewExecutionError(s.ID(), fmt.Errorf("loading %s: %w", source, err), false)
		}
	}

	if !ds.HasColumn(target) {
		target = ""
	}

	profile, err := report.Build(ds, source, target, logger)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	ReportProgress(ctx, 60, "profile built, writing reports")

	csvPath := filepath.Join(s.deps.Paths.ReportsDir, "eda.csv")
	if err := profile.WriteCSV(csvPath); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	workbookPath := filepath.Join(s.deps.Paths.ReportsDir, "eda.xlsx")
	if err := profile.WriteWorkbook(workbookPath); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	state.SetContext(ContextKeyReportPath, workbookPath)

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("csv", csvPath)
		stepState.SetMeta("workbook", workbookPath)
	}

	logger.InfoContext(ctx, "report written", "csv", csvPath, "workbook", workbookPath)
	return nil
}

// DeployStep promotes a trained model to production. The model comes
// from the current operation when one was trained, otherwise the most
// recent staged model is used.
type DeployStep struct {
	BaseStage
	deps StageDeps
}

// NewDeployStep creates the deployment step.
func NewDeployStep(deps StageDeps) *DeployStep {
	return &DeployStep{
		BaseStage: NewBaseStage(StageIDDeploy, StageNameDeploy, nil),
		deps:      deps,
	}
}

func (s *DeployStep) Validate(state *OperationState) error {
	if s.deps.Tracker == nil {
		return fmt.Errorf("deployment requires a tracking store")
	}
	return nil
}

func (s *DeployStep) Execute(ctx context.Context, state *OperationState) error {
	var modelID int64
	if v, ok := state.GetContext(ContextKeyModelID); ok {
		if id, ok := v.(int64); ok {
			modelID = id
		}
	}

	if modelID == 0 {
		staged, err := s.deps.Tracker.LatestModel(tracking.StageStaging)
		if err != nil {
			return NewExecutionError(s.ID(), err, false)
		}
		modelID = staged.ID
	}

	if err := s.deps.Tracker.PromoteModel(modelID); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	promoted, err := s.deps.Tracker.GetModel(modelID)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	// Export a stable copy the serving side can pick up.
	artifact, err := regress.LoadArtifact(promoted.Path)
	if err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("reading artifact %s: %w", promoted.Path, err), false)
	}
	productionPath := filepath.Join(s.deps.Paths.ModelsDir, "production.json")
	if err := artifact.Save(productionPath); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	if stepState := state.GetStage(s.ID()); stepState != nil {
		stepState.SetMeta("model_id", promoted.ID)
		stepState.SetMeta("production_path", productionPath)
	}

	s.deps.logger().InfoContext(ctx, "model deployed",
		"model_id", promoted.ID, "run_id", promoted.RunID, "path", productionPath)
	return nil
}

// featureColumns returns the numeric non-target columns in order.
func featureColumns(ds *dataset.Dataset, target string) []string {
	var features []string
	for _, col := range ds.Columns() {
		if col.Name == target || col.Kind != dataset.KindNumeric {
			continue
		}
		features = append(features, col.Name)
	}
	return features
}
