package sandbox

import "strings"

// DefaultSource is the component shown before anything has been generated.
const DefaultSource = `function App() {
  return (
    <div style={{
      backgroundColor: '#f0f0f0',
      padding: '20px',
      borderRadius: '8px',
      fontFamily: 'Arial, sans-serif',
    }}>
      <h1 style={{
        color: '#333',
        fontSize: '24px',
      }}>Welcome to the Playground!</h1>
      <p style={{
        color: '#666',
        fontSize: '16px',
      }}>This is a sample React component. Send a message to generate a new one!</p>
    </div>
  );
}
`

// DefaultSourceFor returns DefaultSource with its component renamed to entry.
func DefaultSourceFor(entry string) string {
	if entry == "" || entry == DefaultEntryPoint {
		return DefaultSource
	}
	return strings.Replace(DefaultSource, "function "+DefaultEntryPoint+"(", "function "+entry+"(", 1)
}
