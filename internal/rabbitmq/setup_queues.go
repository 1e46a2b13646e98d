package rabbitmq

// Ключи маршрутизации уведомлений.
const (
	RoutingAdmin = "admin"
	RoutingEmail = "email"
)

// Очереди уведомлений.
const (
	QueueAdmin = "notifications.admin"
	QueueEmail = "notifications.email"
)

// QueueConfig очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues очереди, которые читает notifier.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueAdmin, RoutingKey: RoutingAdmin},
		{QueueName: QueueEmail, RoutingKey: RoutingEmail},
	}
}
