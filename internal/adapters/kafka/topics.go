package kafka

// Default topics; both are overridable through KafkaConfig
const (
	// TopicPatientIntake carries raw patient records waiting to be scored
	TopicPatientIntake = "patients.intake"
	// TopicPredictions carries scored predictions
	TopicPredictions = "patients.predictions"
	// TopicModelPublished announces a newly trained model set
	TopicModelPublished = "models.published"
)
