package email

// BaseTemplate wraps every message body
const BaseTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f4f4f7; color: #1f2933; }
        .container { max-width: 600px; margin: 0 auto; padding: 40px 20px; }
        .card { background: #ffffff; border-radius: 12px; padding: 32px; border: 1px solid #e4e7eb; }
        .logo { text-align: center; margin-bottom: 24px; }
        .logo h1 { font-size: 28px; color: #2563eb; margin: 0; }
        h2 { font-size: 22px; margin: 0 0 16px; }
        p { color: #52606d; font-size: 16px; line-height: 1.6; margin: 0 0 16px; }
        .btn { display: inline-block; background: #2563eb; color: #ffffff !important; text-decoration: none; padding: 14px 28px; border-radius: 8px; font-weight: 600; margin: 16px 0; }
        .info-box { background: #f5f7fa; border-radius: 8px; padding: 16px; margin: 16px 0; }
        .footer { text-align: center; margin-top: 32px; color: #9aa5b1; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <div class="logo"><h1>Eventify</h1></div>
            {{.Content}}
        </div>
        <div class="footer">
            <p>You received this email because you bought a ticket on Eventify.</p>
        </div>
    </div>
</body>
</html>
`

// TransactionAcceptedTemplate is sent when the organizer confirms the payment
const TransactionAcceptedTemplate = `
<h2>Your tickets are confirmed</h2>
<p>Hi {{.CustomerName}}, the organizer of <strong>{{.EventName}}</strong> confirmed your payment.</p>
<div class="info-box">
    <p><strong>Order:</strong> {{.TransactionID}}</p>
    <p><strong>Tickets:</strong> {{.Quantity}}</p>
    <p><strong>Total paid:</strong> {{.TotalAmount}}</p>
</div>
{{if .TransactionURL}}<a href="{{.TransactionURL}}" class="btn">View order</a>{{end}}
`

// TransactionRejectedTemplate is sent when the organizer rejects the payment
const TransactionRejectedTemplate = `
<h2>Your order was rejected</h2>
<p>Hi {{.CustomerName}}, the organizer of <strong>{{.EventName}}</strong> could not confirm your payment.</p>
<div class="info-box">
    <p><strong>Order:</strong> {{.TransactionID}}</p>
    <p><strong>Seats released:</strong> {{.SeatsReleased}}</p>
    {{if .PointsRefunded}}<p><strong>Points refunded:</strong> {{.PointsRefunded}}</p>{{end}}
    {{if .CouponRestored}}<p>Your coupon can be used again.</p>{{end}}
</div>
{{if .TransactionURL}}<a href="{{.TransactionURL}}" class="btn">View order</a>{{end}}
`
